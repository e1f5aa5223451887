//go:build darwin

package scan

// aliasPrefixes lists firmlink-style duplicate namespaces that map to the
// same physical storage as the system volume. Device-id comparison cannot
// catch these, so they are skipped outright.
var aliasPrefixes = []string{
	"/System/Volumes/Data",
}
