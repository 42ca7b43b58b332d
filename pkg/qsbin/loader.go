package qsbin

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/luxfi/log"
)

// LoadBin reads one capture file into a flat packet sequence. A file name
// containing ".gz" selects gzip decompression. Open/decompress failures and
// truncated records are fatal for the file; nothing partial is returned.
func LoadBin(path string, logger log.Logger) ([]Packet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, 1<<20)
	if strings.Contains(filepath.Base(path), ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	dec := NewDecoder(r, logger)
	var pkts []Packet
	for {
		pkt, err := dec.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		pkts = append(pkts, pkt)
	}
	logger.Info("loaded capture", "file", path, "packets", len(pkts))
	return pkts, nil
}

// LoadBinFiles concatenates several capture files in argument order.
func LoadBinFiles(paths []string, logger log.Logger) ([]Packet, error) {
	var pkts []Packet
	for _, path := range paths {
		p, err := LoadBin(path, logger)
		if err != nil {
			return nil, err
		}
		pkts = append(pkts, p...)
	}
	return pkts, nil
}
