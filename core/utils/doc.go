// Package utils provides common utility functions for the case-mirror
// application. It includes helper functions for converting the loosely-typed
// values found in raw remote table payloads into concrete Go types.
package utils
