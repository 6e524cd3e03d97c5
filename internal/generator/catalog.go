package generator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Product is one catalog entry.
type Product struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// LoadCatalog decodes a JSON list of products.
func LoadCatalog(r io.Reader) ([]Product, error) {
	var products []Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for i, p := range products {
		if p.Name == "" {
			return nil, fmt.Errorf("catalog entry %d: empty name", i)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("catalog entry %d (%s): negative price %v", i, p.Name, p.Price)
		}
	}
	return products, nil
}

// LoadCatalogFile reads a catalog from path.
func LoadCatalogFile(path string) ([]Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// LoadNames reads one name per line. Lines containing any non-ASCII byte
// are discarded, as are blank lines.
func LoadNames(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || !isASCII(line) {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read names: %w", err)
	}
	return names, nil
}

// LoadNamesFile reads a name list from path.
func LoadNamesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open names: %w", err)
	}
	defer f.Close()
	return LoadNames(f)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
