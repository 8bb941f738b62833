// Package config provides the configuration of sitesearch: CLI defaults,
// validation, and the optional .sitesearch YAML file holding per-site
// headers, cookies and crawl limits.
package config
