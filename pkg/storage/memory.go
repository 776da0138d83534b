package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const memoryScheme = "memory://"

type memObject struct {
	data        []byte
	contentType string
}

// Memory keeps objects in process memory. Used when S3 is not configured and in tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

// NewMemory creates an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject)}
}

func (m *Memory) Save(_ context.Context, data []byte, mimeType, filename, namespace string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty object")
	}
	if len(data) > MaxObjectSize {
		return "", fmt.Errorf("object exceeds %d bytes", MaxObjectSize)
	}
	if mimeType == "" {
		mimeType = ContentTypeForFilename(filename)
	}
	key := ObjectKey(namespace, filename)
	cp := append([]byte(nil), data...)
	m.mu.Lock()
	m.objects[key] = memObject{data: cp, contentType: mimeType}
	m.mu.Unlock()
	return memoryScheme + key, nil
}

func (m *Memory) key(ref string) (string, error) {
	if strings.HasPrefix(ref, memoryScheme) {
		ref = strings.TrimPrefix(ref, memoryScheme)
	} else if strings.Contains(ref, "://") {
		return "", ErrForeignRef
	}
	return CheckKey(ref)
}

func (m *Memory) Open(_ context.Context, ref string) ([]byte, string, error) {
	key, err := m.key(ref)
	if err != nil {
		return nil, "", err
	}
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, "", ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), obj.contentType, nil
}

func (m *Memory) Delete(_ context.Context, ref string) error {
	key, err := m.key(ref)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
