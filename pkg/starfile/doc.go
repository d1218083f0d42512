// Package starfile implements a small build orchestrator. Targets are declared
// in a Starlark script (targets.star) and their commands run through an
// embedded POSIX shell (mvdan.cc/sh), which keeps target scripts portable
// across platforms while all real work stays delegated to the wrapped
// toolchain.
package starfile
