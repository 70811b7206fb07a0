// Package connection talks to a running meshtls-server over its admin
// HTTP listener.
package connection
