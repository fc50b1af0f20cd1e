// Remphasis fits stochastic birth-death diversification models to a
// reconstructed phylogeny by Monte-Carlo Expectation-Maximization.
package main

import (
	"github.com/js-arias/command"

	"github.com/HHildenbrandt/remphasis/cmd/remphasis/run"
)

var app = &command.Command{
	Usage: "remphasis <command> [<argument>...]",
	Short: "fit diversification models by Monte-Carlo EM",
}

func init() {
	app.Add(run.Command)
}

func main() {
	app.Main()
}
