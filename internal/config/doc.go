// Package config handles application configuration loading and the static
// holder roster. Configuration is merged from environment variables
// (LEASEGATE_* prefix) and an optional YAML file, with environment taking
// precedence, then validated with struct tags.
package config
