package errors

import "fmt"

// Common error wrapping patterns used throughout the codebase

// WrapParseError wraps an error with a "failed to parse" message
func WrapParseError(item string, cause error) *BaseError {
	return Wrap(SyntaxErrorCode, fmt.Sprintf("failed to parse %s", item), cause)
}

// WrapLoadError wraps package loading failures
func WrapLoadError(patterns []string, cause error) *BaseError {
	return Wrap(SnapshotErrorCode, "failed to load packages", cause).
		WithContext("patterns", patterns).
		WithSuggestions(
			"Run 'go build' on the target packages to surface compile errors",
			"Check that the working directory belongs to a Go module",
		)
}

// WrapGenerateError wraps an error with a "failed to generate" message
func WrapGenerateError(unit string, cause error) *BaseError {
	return Wrap(GenerationErrorCode, fmt.Sprintf("failed to generate %s", unit), cause).
		WithContext("unit", unit)
}

// WrapTemplateError wraps template processing errors
func WrapTemplateError(templateName, operation string, cause error) *BaseError {
	message := fmt.Sprintf("failed to %s template '%s'", operation, templateName)
	return Wrap(TemplateErrorCode, message, cause).
		WithContext("template", templateName).
		WithContext("operation", operation)
}

// WrapFileSystemError wraps file system related errors
func WrapFileSystemError(operation, path string, cause error) *BaseError {
	message := fmt.Sprintf("failed to %s file '%s'", operation, path)
	return Wrap(FileSystemErrorCode, message, cause).
		WithContext("operation", operation).
		WithContext("path", path)
}

// WrapCacheError wraps memo store failures
func WrapCacheError(operation, key string, cause error) *BaseError {
	message := fmt.Sprintf("failed to %s cache entry '%s'", operation, key)
	return Wrap(CacheErrorCode, message, cause).
		WithContext("operation", operation).
		WithSuggestions("Remove the cache directory and run again")
}

// WrapConfigurationError wraps configuration-related errors
func WrapConfigurationError(configType, operation string, cause error) *BaseError {
	message := fmt.Sprintf("failed to %s configuration '%s'", operation, configType)
	return Wrap(ConfigurationErrorCode, message, cause).
		WithContext("config_type", configType).
		WithContext("operation", operation)
}

// WrapOverlayError wraps failures building the go build -overlay directory
func WrapOverlayError(operation, dir string, cause error) *BaseError {
	return Wrap(OverlayErrorCode, fmt.Sprintf("failed to %s overlay '%s'", operation, dir), cause).
		WithContext("operation", operation).
		WithContext("path", dir).
		WithSuggestions("Check that the overlay directory is writable and owned by tracegen")
}
