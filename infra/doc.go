// Package infra contains technical adapters: HTTP irradiance clients, the
// measured demand reader, the MQTT guidance stream, metrics exporters and
// the Sentry monitor. These packages depend only on interfaces defined in
// the core packages.
package infra
