// Package provision builds virtual environments from tagged snapshots of the
// prerequisites repository.
//
// Each attempt is linear: validate the tag by shallow-cloning it into a temp
// workspace, create the environment, discover wheel and requirements files in
// the clone, and install them against the new interpreter. Failure after the
// environment directory exists rolls the directory back; the temp workspace
// is removed unconditionally on every exit path.
package provision
