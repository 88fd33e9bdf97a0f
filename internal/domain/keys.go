package domain

// KeyPrefix is the default namespace for every key the repositories write.
const KeyPrefix = "edgescan:"
