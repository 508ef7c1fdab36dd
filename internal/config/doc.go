// Package config provides configuration structures and utilities for pagescout.
// It defines the run settings (homepages, page types, search credentials,
// fetch and browser tuning, export format) and loads them from a YAML file,
// environment variables and a homepage list file.
package config
