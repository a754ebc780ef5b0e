package ulengine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/ulassoc"
	"github.com/kestrel-health/dicomul/uldimse"
)

// Sink is where the reassembler writes an incoming command or dataset
// stream as its PDVs arrive.
type Sink interface {
	io.Writer
}

// FileMetaInformation is synthesized by the reassembler for a C-STORE
// dataset, combining the presentation context and command fields a
// dataset's own file-meta group would otherwise carry.
type FileMetaInformation struct {
	MediaStorageSOPClassUID      string
	MediaStorageSOPInstanceUID   string
	TransferSyntaxUID            string
	ImplementationClassUID       string
	ImplementationVersionName    string
	SourceApplicationEntityTitle string
}

// DicomFile is the parsed result of a finalized C-STORE dataset. Close
// releases whatever backing resource (e.g. a temp file) the provider that
// created it allocated; callers must call it once the C-STORE upcall
// returns, per the temp-file ownership model: the file outlives the Sink
// handle used to write it, so the upcall can still read back from it.
type DicomFile struct {
	Meta    FileMetaInformation
	Dataset *dicom.Dataset

	close func() error
}

// Close releases the file's backing resource. Safe to call on a nil
// close func (no-op).
func (f *DicomFile) Close() error {
	if f == nil || f.close == nil {
		return nil
	}
	return f.close()
}

// CStoreSinkProvider selects where an incoming C-STORE dataset is written
// and parses it back once fully received. The default implementation
// spills to a temporary file; hosts needing direct-to-storage writes
// supply their own.
type CStoreSinkProvider interface {
	Open(ctx context.Context, assoc *ulassoc.Association, req *uldimse.CStoreRq, pc *ulassoc.PresentationContext) (Sink, error)
	Finalize(ctx context.Context, sink Sink, meta FileMetaInformation) (*DicomFile, error)
	OnException(filename string, err error)
}

// TempFileSinkProvider is the default CStoreSinkProvider: it writes the
// incoming dataset to a temp file in Dir (os.TempDir() if empty) and
// parses it back on Finalize.
type TempFileSinkProvider struct {
	Dir string
}

type tempFileSink struct {
	f *os.File
}

func (s *tempFileSink) Write(p []byte) (int, error) { return s.f.Write(p) }

func (p *TempFileSinkProvider) Open(_ context.Context, assoc *ulassoc.Association, req *uldimse.CStoreRq, pc *ulassoc.PresentationContext) (Sink, error) {
	dir := p.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	// A uuid-keyed name, rather than os.CreateTemp's own random suffix,
	// keeps the on-disk name stable and collision-free even if the same
	// SOP instance is received twice concurrently (e.g. a retried C-STORE).
	name := filepath.Join(dir, fmt.Sprintf("dicomul-cstore-%s.dcm", uuid.New().String()))
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("ulengine: create temp file for %s: %w", req.AffectedSOPInstanceUID, err)
	}
	if err := writeFileMetaInformation(f, buildFileMeta(assoc, req, pc)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("ulengine: write file meta for %s: %w", req.AffectedSOPInstanceUID, err)
	}
	return &tempFileSink{f: f}, nil
}

// buildFileMeta derives a C-STORE dataset's File Meta Information from the
// negotiated association, the request, and its presentation context — the
// same fields a dataset's own file-meta group would carry had the sender
// written one. The recorded implementation identity is the sender's own
// (the association's remote peer), per how PS 3.10 §7 is used in practice:
// the meta group records who created the file, not who's reading it back.
func buildFileMeta(assoc *ulassoc.Association, req *uldimse.CStoreRq, pc *ulassoc.PresentationContext) FileMetaInformation {
	meta := FileMetaInformation{
		MediaStorageSOPClassUID:    req.AffectedSOPClassUID,
		MediaStorageSOPInstanceUID: req.AffectedSOPInstanceUID,
	}
	if pc != nil {
		meta.TransferSyntaxUID = pc.AcceptedTransferSyntax
		if pc.AbstractSyntaxUID != "" {
			meta.MediaStorageSOPClassUID = pc.AbstractSyntaxUID
		}
	}
	if assoc != nil {
		meta.ImplementationClassUID = assoc.RemoteImplementationClassUID
		meta.ImplementationVersionName = assoc.RemoteImplementationVersionName
		meta.SourceApplicationEntityTitle = assoc.CallingAETitle
	}
	return meta
}

func (p *TempFileSinkProvider) Finalize(_ context.Context, sink Sink, meta FileMetaInformation) (*DicomFile, error) {
	ts, ok := sink.(*tempFileSink)
	if !ok {
		return nil, fmt.Errorf("ulengine: TempFileSinkProvider.Finalize called with foreign sink type %T", sink)
	}
	path := ts.f.Name()
	if err := ts.f.Close(); err != nil {
		return nil, fmt.Errorf("ulengine: close temp file %s: %w", path, err)
	}
	rf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ulengine: reopen temp file %s: %w", path, err)
	}
	info, err := rf.Stat()
	if err != nil {
		rf.Close()
		return nil, fmt.Errorf("ulengine: stat temp file %s: %w", path, err)
	}
	// No SkipMetadataReadOnNewParserInit here: Open wrote a real file-meta
	// group ahead of the dataset, so the parser reads it and configures its
	// own transfer syntax instead of needing to be told one.
	dataset, err := dicom.Parse(rf, info.Size(), nil)
	rf.Close()
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("ulengine: parse dataset from %s: %w", path, err)
	}
	return &DicomFile{
		Meta:    meta,
		Dataset: &dataset,
		close:   func() error { return os.Remove(path) },
	}, nil
}

func (p *TempFileSinkProvider) OnException(filename string, err error) {
	if filename != "" {
		os.Remove(filename)
	}
}
