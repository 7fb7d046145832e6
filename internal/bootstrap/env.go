package bootstrap

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Loadenv loads .env.<env> (ENV=dev|test|prod) and then .env. Variables
// already present in the process environment always win.
func Loadenv() {
	files := []string{".env"}
	if env := strings.ToLower(os.Getenv("ENV")); env != "" {
		files = append([]string{".env." + env}, files...)
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Printf("bootstrap: cannot load %s: %v", f, err)
		}
	}
}
