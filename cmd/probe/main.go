// Command probe runs the tensor engine demonstrations: repeated additions with
// backpropagation on a chosen device and a single-image ResNet classification,
// optionally tracing every operator and allocation.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "probe:", err)
		os.Exit(1)
	}
}
