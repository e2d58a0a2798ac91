package domain

// KeyPrefix is the default namespace for every persisted key.
const KeyPrefix = "kidlock:"
