// Command loadgen fires concurrent order submissions at the gateway to
// exercise the outbox publisher under load.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

func main() {
	target := flag.String("target", "http://localhost:8080", "gateway base URL")
	total := flag.Int("n", 50, "number of orders to submit")
	flag.Parse()

	start := time.Now()
	var wg sync.WaitGroup

	fmt.Printf("Submitting %d orders to %s...\n", *total, *target)

	for i := 0; i < *total; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			body := []byte(fmt.Sprintf(
				`{"userId": %q, "amount": "100.00", "description": "load order %d"}`,
				uuid.New(), id))

			resp, err := http.Post(*target+"/orders", "application/json", bytes.NewBuffer(body))
			if err != nil {
				fmt.Printf("Request %d failed: %v\n", id, err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				fmt.Printf("Request %d got status %d\n", id, resp.StatusCode)
			}
		}(i)
	}

	wg.Wait()
	fmt.Printf("Finished %d requests in %v\n", *total, time.Since(start))
}
