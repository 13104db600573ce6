// Package apppath derives generated-artifact paths under an application root.
//
// Every cache and model artifact lives at a path keyed by its owning
// identifiers (embedder type, or domain/intent/entity triple), so concurrent
// classifiers never contend on the same file.
package apppath

import "path/filepath"

const generatedDir = ".generated"

// GeneratedDir returns the directory holding all generated files for an app.
func GeneratedDir(appPath string) string {
	return filepath.Join(appPath, generatedDir)
}

// EmbedderCachePath returns the embedding cache file for an embedder type.
func EmbedderCachePath(appPath, embedderType string) string {
	return filepath.Join(appPath, generatedDir, "embeddings", embedderType+".cache")
}

// RoleModelPath returns the trained role classifier artifact path for the
// (domain, intent, entity) triple. The fingerprint sidecar lives at the same
// path with a ".hash" suffix.
func RoleModelPath(appPath, domain, intent, entityType string) string {
	name := "role_" + domain + "_" + intent + "_" + entityType + ".json"
	return filepath.Join(appPath, generatedDir, "models", name)
}

// ConfigPath returns the app-level configuration file.
func ConfigPath(appPath string) string {
	return filepath.Join(appPath, "config.yaml")
}

// DomainsDir returns the labeled-query file tree root.
func DomainsDir(appPath string) string {
	return filepath.Join(appPath, "domains")
}

// EntitiesDir returns the gazetteer file tree root.
func EntitiesDir(appPath string) string {
	return filepath.Join(appPath, "entities")
}
