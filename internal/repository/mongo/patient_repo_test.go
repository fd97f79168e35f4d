package mongo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// rawCursor replays documents the way *mongo.Cursor does.
type rawCursor struct {
	docs []bson.Raw
	pos  int
	err  error
}

func (c *rawCursor) Next(context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *rawCursor) Decode(val interface{}) error { return bson.Unmarshal(c.docs[c.pos-1], val) }
func (c *rawCursor) Err() error                   { return c.err }

func mustRaw(t *testing.T, doc bson.M) bson.Raw {
	t.Helper()
	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestIsChangeStreamUnsupported(t *testing.T) {
	standalone := mongo.CommandError{Code: changeStreamUnsupportedCode, Message: "The $changeStream stage is only supported on replica sets"}

	if !isChangeStreamUnsupported(standalone) {
		t.Error("expected standalone error to be detected")
	}
	if !isChangeStreamUnsupported(fmt.Errorf("watch: %w", standalone)) {
		t.Error("expected wrapped standalone error to be detected")
	}
	if isChangeStreamUnsupported(mongo.CommandError{Code: 13, Message: "unauthorized"}) {
		t.Error("unexpected match for unrelated command error")
	}
	if isChangeStreamUnsupported(errors.New("network down")) {
		t.Error("unexpected match for plain error")
	}
}

func TestPatientChangeEvent_Decode(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"operationType": "replace",
		"documentKey":   bson.M{"_id": "PHYA1234567A"},
		"fullDocument": bson.M{
			"_id":           "PHYA1234567A",
			"name":          "Chan",
			"therapistName": "Wong",
			"exercises":     bson.A{},
			"lastUpdated":   int64(1700000000000),
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var event patientChangeEvent
	if err := bson.Unmarshal(raw, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.OperationType != "replace" || event.DocumentKey.ID != "PHYA1234567A" {
		t.Errorf("unexpected event header: %+v", event)
	}
	if event.FullDocument == nil || event.FullDocument.TherapistName != "Wong" {
		t.Errorf("unexpected full document: %+v", event.FullDocument)
	}
}

func TestDecodePatients_SkipsUndecodableDocuments(t *testing.T) {
	cur := &rawCursor{docs: []bson.Raw{
		mustRaw(t, bson.M{"_id": "PHYA1", "name": "Chan", "exercises": bson.A{}}),
		mustRaw(t, bson.M{"_id": "PHYA2", "exercises": bson.A{
			bson.M{"exerciseId": "treadmill", "data": bson.M{"mins": bson.M{"nested": 1}}},
		}}),
		mustRaw(t, bson.M{"_id": "PHYA3", "name": "Lee", "exercises": bson.A{}}),
	}}

	docs, err := decodePatients(context.Background(), cur, zap.NewNop())
	if err != nil {
		t.Fatalf("decodePatients() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("decoded %d patients, want 2: %v", len(docs), docs)
	}
	if docs["PHYA1"].Name != "Chan" || docs["PHYA3"].Name != "Lee" {
		t.Errorf("unexpected patients: %+v", docs)
	}
	if _, ok := docs["PHYA2"]; ok {
		t.Error("undecodable document must be skipped")
	}
}

func TestDecodePatients_CursorErrorFailsLoad(t *testing.T) {
	transport := errors.New("connection reset")
	cur := &rawCursor{
		docs: []bson.Raw{mustRaw(t, bson.M{"_id": "PHYA1"})},
		err:  transport,
	}
	if _, err := decodePatients(context.Background(), cur, zap.NewNop()); !errors.Is(err, transport) {
		t.Errorf("decodePatients() error = %v, want %v", err, transport)
	}
}
