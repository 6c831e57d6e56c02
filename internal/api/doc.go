// Package api serves manifest rendering over HTTP: clients post a topology
// and receive the per-node manifests, groups or deployment plan that the
// CLI would produce for it.
package api
