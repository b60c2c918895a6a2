package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/relidx/relidx/internal/pkg/logging"
	"github.com/relidx/relidx/internal/relidx"
)

func main() {
	var (
		relationPath = flag.String("relation", "", "path to the heap relation file")
		recordSize   = flag.Int("record-size", 28, "size of one relation record in bytes")
		attrOffset   = flag.Int("offset", 0, "byte offset of the indexed int32 attribute")
		dir          = flag.String("dir", ".", "directory holding the index file")
		scan         = flag.Bool("scan", false, "run a range scan after opening the index")
		low          = flag.Int("low", 0, "scan low bound (inclusive)")
		high         = flag.Int("high", 0, "scan high bound (inclusive)")
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

	if *relationPath == "" {
		logger.Fatal("missing -relation flag")
	}

	if err := run(logger, *relationPath, *recordSize, *attrOffset, *dir, *scan, *low, *high); err != nil {
		logger.Fatal("relidx failed", zap.Error(err))
	}
}

func run(logger *zap.Logger, relationPath string, recordSize, attrOffset int, dir string, scan bool, low, high int) error {
	ctx := context.Background()

	aPool := relidx.NewBufferPool(logger, 1000)

	aRelation, err := relidx.OpenHeapFile(logger, aPool, relationPath, recordSize)
	if err != nil {
		return fmt.Errorf("open relation: %w", err)
	}
	defer aRelation.Close(ctx)

	anIndex, err := relidx.OpenIndex(ctx, logger, aPool, aRelation, int32(attrOffset), relidx.Integer,
		relidx.WithDirectory(dir))
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer anIndex.Close(ctx)

	logger.Info("index ready", zap.String("index", anIndex.Name()))

	if !scan {
		return nil
	}

	if err := anIndex.StartScan(ctx, int32(low), relidx.ScanGTE, int32(high), relidx.ScanLTE); err != nil {
		return fmt.Errorf("start scan: %w", err)
	}
	defer anIndex.EndScan()

	matched := 0
	for {
		rid, err := anIndex.ScanNext(ctx)
		if err == relidx.ErrIndexScanCompleted {
			break
		}
		if err != nil {
			return fmt.Errorf("scan next: %w", err)
		}
		record, err := aRelation.GetRecord(ctx, rid)
		if err != nil {
			return fmt.Errorf("get record %s: %w", rid, err)
		}
		key := int32(uint32(record[attrOffset]) |
			uint32(record[attrOffset+1])<<8 |
			uint32(record[attrOffset+2])<<16 |
			uint32(record[attrOffset+3])<<24)
		fmt.Printf("%s key=%d\n", rid, key)
		matched += 1
	}

	logger.Info("scan finished", zap.Int("matched", matched))

	return nil
}
