package services

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"github.com/telepost/dicom-transfer/internal/dicomfile"
	"github.com/telepost/dicom-transfer/internal/models"
	"github.com/telepost/dicom-transfer/internal/sessions"
	"github.com/telepost/dicom-transfer/internal/worker"
)

// dicomBytes generates a complete in-memory DICOM file in the canonical
// transfer syntax.
func dicomBytes(t *testing.T, seriesUID, seriesNumber, sopUID string) []byte {
	t.Helper()
	elem := func(tg tag.Tag, values []string) *dicom.Element {
		e, err := dicom.NewElement(tg, values)
		require.NoError(t, err)
		return e
	}
	ds := dicom.Dataset{Elements: []*dicom.Element{
		elem(tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		elem(tag.MediaStorageSOPInstanceUID, []string{sopUID}),
		elem(tag.TransferSyntaxUID, []string{dicomfile.ExplicitVRLittleEndian}),
		elem(tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		elem(tag.SOPInstanceUID, []string{sopUID}),
		elem(tag.Modality, []string{"OT"}),
		elem(tag.PatientName, []string{"Adams^Anna"}),
		elem(tag.PatientID, []string{"P1"}),
		elem(tag.StudyInstanceUID, []string{"1.2.826.0.1.3680043.8.498.9"}),
		elem(tag.SeriesInstanceUID, []string{seriesUID}),
		elem(tag.SeriesNumber, []string{seriesNumber}),
	}}

	var buf bytes.Buffer
	require.NoError(t, dicom.Write(&buf, ds, dicom.SkipVRVerification()))
	return buf.Bytes()
}

// The whole pipeline: import a batch, send every resulting series, watch
// both transfers reach success with matching instance counts.
func TestImportThenSendPipeline(t *testing.T) {
	ledger := newFakeLedger()
	dest := testDestination()
	dests := &fakeDestinations{dests: map[uuid.UUID]*models.Destination{dest.ID: dest}}

	// Both transfers share the session directory; hold each tool run until
	// the other has picked up its files so neither sees the cleanup of the
	// first to finish.
	var bothStarted sync.WaitGroup
	bothStarted.Add(2)
	runner := &stubRunner{run: func(ctx context.Context, name string, args ...string) (string, string, error) {
		bothStarted.Done()
		bothStarted.Wait()
		return "", "", nil
	}}

	store := sessions.NewMemoryStore()
	defer store.Close()
	index := sessions.NewIndex(store, time.Hour)

	pool := worker.NewPool(3, 16)
	pool.Start(context.Background())
	defer pool.Stop()

	importSvc := NewImportService(dicomfile.NewParser(), index, ledger)
	transferSvc := NewTransferService(ledger, dests, index, pool, runner, testDICOMConfig())

	seriesA := "1.2.826.0.1.3680043.8.498.9.1"
	seriesB := "1.2.826.0.1.3680043.8.498.9.2"
	uploads := uploadedFiles(t, map[string][]byte{
		"a.dcm": dicomBytes(t, seriesA, "1", seriesA+".1"),
		"b.dcm": dicomBytes(t, seriesA, "1", seriesA+".2"),
		"c.dcm": dicomBytes(t, seriesB, "2", seriesB+".1"),
	})

	user := models.UserContext{UserID: uuid.New(), Username: "jdoe"}
	ctx := context.Background()

	result, err := importSvc.Import(ctx, user, uploads)
	require.NoError(t, err)
	require.Len(t, result.Patients, 1)
	require.Len(t, result.Patients[0].Series, 2)
	assert.Equal(t, 3, result.Summary.FilesProcessed)
	assert.Equal(t, 2, result.Summary.SeriesFound)
	assert.Empty(t, result.Summary.Errors)
	assert.Equal(t, "Adams^Anna", result.Patients[0].Name)

	// Series come back ordered by series number.
	wantCounts := map[string]int{}
	var pairs []models.SeriesTransferRequest
	for _, series := range result.Patients[0].Series {
		wantCounts[series.ID] = series.InstanceCount
		pairs = append(pairs, models.SeriesTransferRequest{
			SeriesID:      series.ID,
			DestinationID: dest.ID.String(),
		})
	}
	assert.Equal(t, 2, wantCounts[result.Patients[0].Series[0].ID])
	assert.Equal(t, 1, wantCounts[result.Patients[0].Series[1].ID])

	initiated, err := transferSvc.DispatchSend(ctx, user, models.SendRequest{SeriesToSend: pairs})
	require.NoError(t, err)
	assert.Equal(t, 2, initiated)

	// Both transfers run asynchronously; wait for them to settle.
	sendEntries := func() []models.TransferLog {
		ledger.mu.Lock()
		defer ledger.mu.Unlock()
		var out []models.TransferLog
		for _, e := range ledger.entries {
			if e.Action == models.ActionSend && e.IsTerminal() {
				out = append(out, e)
			}
		}
		return out
	}
	require.Eventually(t, func() bool {
		return len(sendEntries()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	for _, entry := range sendEntries() {
		assert.Equal(t, models.StatusSuccess, entry.Status)
		assert.Equal(t, user.UserID, entry.UserID)
		assert.Equal(t, "Adams^Anna", entry.PatientName)
		require.NotNil(t, entry.CompletedAt)
		require.NotNil(t, entry.InstanceCount)
		seriesID, _ := entry.Details["series_id"].(string)
		assert.Equal(t, wantCounts[seriesID], *entry.InstanceCount)
	}
}
