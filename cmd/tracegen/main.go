// Command tracegen writes a synthetic Zipfian-popularity access trace that
// exercises internal/trace's format, for feeding into a Profiler or a
// hostcache.Cache without a live memcached fleet in front of it.
package main

import (
	"flag"
	"math/rand"

	log "github.com/golang/glog"

	"github.com/inexplicable/slabmrc/internal/trace"
	"github.com/inexplicable/slabmrc/internal/window"
)

var (
	outPath    = flag.String("out", "trace.bin", "path to write the binary trace to")
	numRecords = flag.Int("n", 1_000_000, "number of records to generate")
	numKeys    = flag.Int64("keys", 100_000, "cardinality of the synthetic key space")
	numClasses = flag.Int("classes", 4, "number of size-classes to spread keys across")
	zipfS      = flag.Float64("zipf-s", 1.1, "zipf distribution skew parameter, >1")
	seed       = flag.Int64("seed", 1, "PRNG seed, for reproducible traces")
)

func main() {
	flag.Parse()
	defer log.Flush()

	w, err := trace.Create(*outPath)
	if err != nil {
		log.Fatalf("<tracegen> create %s: %v", *outPath, err)
	}
	defer w.Close()

	rng := rand.New(rand.NewSource(*seed))
	zipf := rand.NewZipf(rng, *zipfS, 1, uint64(*numKeys)-1)

	for i := 0; i < *numRecords; i++ {
		keyHash := zipf.Uint64()
		class := window.ClassId(int(keyHash) % *numClasses)
		size := uint32(64 << (keyHash % 4))
		rec := trace.Record{
			Timestamp: uint32(i),
			KeyHash:   keyHash,
			Class:     class,
			Size:      size,
		}
		if err := w.Write(rec); err != nil {
			log.Fatalf("<tracegen> write record %d: %v", i, err)
		}
	}
	log.Infof("<tracegen> wrote %d records to %s\n", *numRecords, *outPath)
}
