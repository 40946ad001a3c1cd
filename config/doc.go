// Package config loads the bridge configuration and assembles the FIX
// engine's runtime inputs from it.
//
// A configuration file (JSON or YAML, chosen by extension) describes the NATS
// transport, the echo and event subjects, the control service and the
// bridge Settings. Settings carry the list of sessions plus the behavioural
// knobs: queueCapacity, autoStart, autoStopAfter, startControl and
// startOnTraffic.
//
// Assemble turns Settings into everything the engine needs:
//
//	asm, err := config.Assemble(cfg.Settings, config.AssembleOptions{
//	    DictionaryArchive: cfg.Dictionary,
//	    Registrar:         ledger,
//	})
//
// It validates settings, builds the alias/identity registry, extracts the
// dictionary archive (entries must be named FIX.<4|5>.<0-4>.xml), and writes
// the engine configuration as one [DEFAULT] block followed by one [SESSION]
// block per session. Every file it creates is handed to the Registrar for
// removal at shutdown.
//
// Environment overrides use the SEMSTREAMS_FIX_ prefix: NATS_URLS,
// NATS_TOKEN, DICTIONARY and METRICS_PORT.
package config
