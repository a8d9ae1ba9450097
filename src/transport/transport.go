// Package transport copies ready snapshot images to the backup store.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"

	"tenant-backup/src/model"
	"tenant-backup/src/store"
	"tenant-backup/src/util/progress"
)

// Config wires a Transport.
type Config struct {
	Source ImageSource
	Store  store.Store
	// Out receives per-instance progress lines; nil disables them.
	Out io.Writer
	// Progress adds a byte counter while each image uploads.
	Progress bool
	Logger   *slog.Logger
}

// Transport moves snapshot images from the platform to the backup store.
type Transport struct {
	src      ImageSource
	dst      store.Store
	out      io.Writer
	progress bool
	logger   *slog.Logger
}

func New(cfg Config) *Transport {
	t := &Transport{src: cfg.Source, dst: cfg.Store, out: cfg.Out, progress: cfg.Progress, logger: cfg.Logger}
	if t.src == nil {
		t.src = DirSource{}
	}
	if t.out == nil {
		t.out = io.Discard
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.logger = t.logger.With("component", "transport")
	return t
}

// Transfer uploads the image of a ready instance to snapshots/<snapshot>.img
// and returns the number of bytes moved.
func (t *Transport) Transfer(ctx context.Context, rec *model.InstanceRecord) (int64, error) {
	if rec.Status != model.StatusSnapshotReady {
		return 0, errors.NotValidf("transfer of %s in status %s", rec.Name, rec.Status)
	}
	r, size, err := t.src.Open(rec.ImageID)
	if err != nil {
		return 0, errors.Annotatef(err, "open image of %s", rec.Name)
	}
	defer r.Close()

	var reader io.Reader = r
	if t.progress {
		reader = progress.NewReader(r, size, rec.Name, t.out)
	}
	name := store.FileName(rec.SnapshotName)
	t.logger.Info("transferring image", "instance", rec.Name, "image_id", rec.ImageID, "artifact", name, "size", size)
	n, err := t.dst.Upload(ctx, name, reader)
	if err != nil {
		return 0, errors.Annotatef(err, "transfer %s to %s", rec.Name, t.dst)
	}
	return n, nil
}

// TransferAll transfers each ready record in order. A failure is logged,
// marks that record TransferFailed and does not stop the loop. The total
// counts successful transfers only.
func (t *Transport) TransferAll(ctx context.Context, recs []*model.InstanceRecord) int64 {
	fmt.Fprintf(t.out, "Transferring images to %s\n", t.dst)
	var total int64
	for _, rec := range recs {
		fmt.Fprintf(t.out, "  %-20s", rec.Name+"...")
		n, err := t.Transfer(ctx, rec)
		if err != nil {
			t.logger.Error("transfer failed", "instance", rec.Name, "error", err)
			fmt.Fprintln(t.out, "FAILED")
			fmt.Fprintf(t.out, "Error: %v\n", err)
			rec.Fail(err)
			continue
		}
		rec.Bytes = n
		if err := rec.Advance(model.StatusTransferred); err != nil {
			t.logger.Error("unexpected state after transfer", "instance", rec.Name, "error", err)
			continue
		}
		total += n
		t.logger.Info("image transferred", "instance", rec.Name, "bytes", n, "human", humanize.Bytes(uint64(n)))
		fmt.Fprintln(t.out, "success")
	}
	return total
}
