package health

import (
	"context"
	"testing"

	"media-analyzer/internal/detection"
	"media-analyzer/internal/pipeline"
)

func TestStatusReportsQueueAndModels(t *testing.T) {
	models := &detection.ModelState{}
	queue := pipeline.NewQueue(4)
	if err := queue.Enqueue(pipeline.NewJob("a", "/tmp/a", "")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	svc := NewService(models, queue, 100<<20)

	r := svc.Status()
	if r.Status != "OK" || r.ModelsLoaded || !r.Accepting {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.QueueDepth != 1 || r.QueueCapacity != 4 {
		t.Fatalf("unexpected queue fields: %+v", r)
	}

	if err := models.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	queue.Close()
	r = svc.Status()
	if !r.ModelsLoaded || r.Accepting {
		t.Fatalf("unexpected report after load/close: %+v", r)
	}
}

func TestModelStatus(t *testing.T) {
	models := &detection.ModelState{}
	svc := NewService(models, nil, 100<<20)

	r := svc.ModelStatus()
	if r.ModelsLoaded || r.FaceModel != nil {
		t.Fatalf("expected unloaded report: %+v", r)
	}
	if r.MaxFileSize != "100MB" {
		t.Fatalf("unexpected max size: %s", r.MaxFileSize)
	}

	if err := models.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	r = svc.ModelStatus()
	if !r.ModelsLoaded || r.FaceModel == nil || *r.FaceModel != detection.FaceModel {
		t.Fatalf("unexpected loaded report: %+v", r)
	}
}
