package tools

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Record anything we log in a file, as well as stdout
func SetupLogFile(path string) (io.Closer, error) {
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(logFile, os.Stdout))
	return logFile, nil
}
