//go:build btdebug

package bt

const debugAssertions = true
