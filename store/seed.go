package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SeedPath returns the seed file for a collection.
//
// Layout:
//
//	data_dir/
//	  businesses.json   # JSON array, one element per slot
//	  reviews.json
//	  photos.json
func SeedPath(dataDir, collection string) string {
	return filepath.Join(dataDir, collection+".json")
}

// loadSeed reads a seed file. A missing file is an empty seed.
func loadSeed(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var result []Record
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return result, nil
}

// Seed fills each empty collection of s from its seed file in dataDir and
// returns the number of slots loaded per collection. A null element becomes
// a tombstone so that the ids of later elements match their array index.
// Collections that already hold slots are left alone.
func Seed(s Store, dataDir string, collections ...string) (map[string]int, error) {
	loaded := make(map[string]int, len(collections))
	for _, collection := range collections {
		n, err := s.Len(collection)
		if err != nil {
			return loaded, err
		}
		if n > 0 {
			continue
		}
		records, err := loadSeed(SeedPath(dataDir, collection))
		if err != nil {
			return loaded, err
		}
		for _, rec := range records {
			id, err := s.Append(collection, rec)
			if err != nil {
				return loaded, err
			}
			if rec == nil {
				if err := s.Tombstone(collection, id); err != nil {
					return loaded, err
				}
			}
		}
		loaded[collection] = len(records)
	}
	return loaded, nil
}
