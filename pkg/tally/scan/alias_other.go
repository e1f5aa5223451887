//go:build !darwin

package scan

// aliasPrefixes is empty on platforms without firmlink-style volume
// aliasing.
var aliasPrefixes []string
