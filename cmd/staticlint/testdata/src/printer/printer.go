package printer

import (
	"fmt"
	"io"
)

func Report(w io.Writer, n int) {
	fmt.Fprintf(w, "%d items\n", n)
	_ = fmt.Sprintf("%d", n)

	fmt.Println("items:", n) // want `fmt.Println writes to stdout; use the logger`
	fmt.Printf("%d\n", n)    // want `fmt.Printf writes to stdout; use the logger`
}
