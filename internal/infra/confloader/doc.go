// Package confloader layers configuration sources with koanf.
//
// Priority, highest first:
//
//  1. Overrides (command-line flags)
//  2. Environment variables (MESHTLS_SECTION_KEY)
//  3. YAML configuration file
//  4. Values already present in the target struct (defaults)
//
// Environment keys split on the first underscore after the prefix, so
// MESHTLS_CREDENTIALS_CERT_FILE maps to credentials.cert_file.
package confloader
