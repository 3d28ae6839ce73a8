// Command loadgen exercises a locally running guard-engine: it burns CPU
// and holds memory so the resource fuses see pressure, while polling the
// read API to print what the guard makes of it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"runtime"
	"time"
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8480", "guard-engine base URL")
		memoryMB = flag.Int("memory-mb", 256, "memory to hold, in MiB")
		workers  = flag.Int("workers", runtime.NumCPU(), "busy-loop workers")
		duration = flag.Duration("duration", 2*time.Minute, "how long to sustain load")
	)
	flag.Parse()

	log.Printf("holding %d MiB and spinning %d workers for %s", *memoryMB, *workers, *duration)

	ballast := make([][]byte, *memoryMB)
	for i := range ballast {
		ballast[i] = make([]byte, 1<<20)
		for j := 0; j < len(ballast[i]); j += 4096 {
			ballast[i][j] = byte(j)
		}
	}

	stop := make(chan struct{})
	for i := 0; i < *workers; i++ {
		go func() {
			x := 0.0001
			for {
				select {
				case <-stop:
					return
				default:
					x = x*1.000001 + 0.000001
					if x > 1e6 {
						x = 0.0001
					}
				}
			}
		}()
	}

	deadline := time.Now().Add(*duration)
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		<-ticker.C
		poll(*baseURL, "/api/v1/fuses/status")
		poll(*baseURL, "/api/v1/stability")
	}
	close(stop)
	runtime.KeepAlive(ballast)
	log.Printf("done")
}

func poll(baseURL, path string) {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		log.Printf("GET %s: %v", path, err)
		return
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("read %s: %v", path, err)
		return
	}
	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err != nil {
		log.Printf("%s -> %s", path, string(body))
		return
	}
	out, _ := json.Marshal(pretty)
	fmt.Printf("%s %s -> %s\n", time.Now().Format(time.TimeOnly), path, out)
}
