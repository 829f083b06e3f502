//go:build nogeminiapi

package gemini

const nativeAvailable = false
