// Package config defines the configuration surface of the bridge daemon:
// router queuing policy, chunked transfer limits, transport selection and
// metrics exposure. Configuration loads from YAML or JSON files and every
// section validates itself before use.
package config
