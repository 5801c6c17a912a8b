// Package config holds the run configuration assembled from CLI flags and
// the optional .quip-export YAML file.
package config
