package database

// HistoryLimit is the number of events returned by the history endpoint.
const HistoryLimit = 50
