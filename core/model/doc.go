// Package model holds the plain data types shared by the twin: system
// configuration, appliance templates and their daily task instances,
// controller decisions and the per-step record written to the run log.
package model
