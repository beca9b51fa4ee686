package core

import "github.com/sirupsen/logrus"

// log is the package-level structured logger shared by the chain
// manager, peer replicator, persistence layer, and HTTP middleware. It
// mirrors the bare package-level logrus usage in the teacher's
// core/consensus.go and core/network.go.
var log = logrus.StandardLogger()

// SetLogLevel adjusts the verbosity of the shared logger. Called once
// at startup from configuration.
func SetLogLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown log level %q, defaulting to info", level)
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
}

// logHardError logs a non-soft error without escalating. Nil and soft
// errors are ignored here, so soft errors are never logged.
func logHardError(context string, err error) {
	if err == nil || IsSoft(err) {
		return
	}
	log.Warnf("%s: %v", context, err)
}
