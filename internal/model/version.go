package model

// Version is the calltrace release version, overridden at build time with
// -ldflags "-X calltrace/internal/model.Version=...".
var Version = "0.3.0"
