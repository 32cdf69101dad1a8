// Command laigent-stub-plugin serves the deterministic stub provider as a
// provider plugin, for offline runs of "laigent --provider plugin".
package main

import (
	"github.com/felixgeelhaar/laigent/internal/plugin"
	"github.com/felixgeelhaar/laigent/internal/provider"
)

func main() {
	plugin.Serve(provider.NewStubProvider())
}
