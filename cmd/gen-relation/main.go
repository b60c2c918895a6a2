package main

import (
	"context"
	"flag"
	"math/rand"
	"os"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/relidx/relidx/internal/pkg/logging"
	"github.com/relidx/relidx/internal/relidx"
)

// Record layout of the generated relation:
//
//	offset 0   int32    id
//	offset 4   [20]byte name (null padded)
//	offset 24  int32    age
const recordSize = 28

func main() {
	var (
		out   = flag.String("out", "people.rel", "path of the heap relation file to create")
		count = flag.Int("count", 1000, "number of records to generate")
		seed  = flag.Int64("seed", 42, "random seed")
	)
	flag.Parse()

	logConf := logging.DefaultConfig()

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	l, err := logging.ParseLevel(level)
	if err != nil {
		panic(err)
	}
	logConf.Level = zap.NewAtomicLevelAt(l)

	logger, err := logConf.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger, *out, *count, *seed); err != nil {
		logger.Fatal("gen-relation failed", zap.Error(err))
	}
}

func run(logger *zap.Logger, out string, count int, seed int64) error {
	ctx := context.Background()

	aPool := relidx.NewBufferPool(logger, 1000)
	aRelation, err := relidx.OpenHeapFile(logger, aPool, out, recordSize)
	if err != nil {
		return err
	}

	faker := gofakeit.New(seed)

	// Unique shuffled ids, the index does not support duplicate keys.
	ids := rand.New(rand.NewSource(seed)).Perm(count)

	record := make([]byte, recordSize)
	for i := 0; i < count; i++ {
		for j := range record {
			record[j] = 0
		}

		id := int32(ids[i])
		record[0] = byte(id)
		record[1] = byte(id >> 8)
		record[2] = byte(id >> 16)
		record[3] = byte(id >> 24)

		copy(record[4:24], faker.Name())

		age := int32(faker.Number(18, 99))
		record[24] = byte(age)
		record[25] = byte(age >> 8)
		record[26] = byte(age >> 16)
		record[27] = byte(age >> 24)

		if _, err := aRelation.InsertRecord(ctx, record); err != nil {
			return err
		}
	}

	if err := aRelation.FlushFile(ctx); err != nil {
		return err
	}

	logger.Info("generated relation",
		zap.String("file", out),
		zap.Int("records", count))

	return aRelation.Close(ctx)
}
