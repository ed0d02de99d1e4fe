package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"eventreg/internal/students/models"
)

// InMemory is a directory over a fixed list of students, used when no record
// store is configured and in tests.
type InMemory struct {
	mu       sync.RWMutex
	students []models.Student
}

// NewInMemory creates a directory holding students.
func NewInMemory(students ...models.Student) *InMemory {
	d := &InMemory{}
	d.Add(students...)
	return d
}

func (d *InMemory) Name() string {
	return "memory"
}

// Add appends students to the directory.
func (d *InMemory) Add(students ...models.Student) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.students = append(d.students, students...)
}

// Find filters, orders by name and limits like the record store.
func (d *InMemory) Find(ctx context.Context, q models.Query) ([]models.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]models.Student, 0)
	for _, s := range d.students {
		if q.Matches(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].FullName) < strings.ToLower(out[j].FullName)
	})
	if limit := q.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DemoStudents seeds a development server without a record store.
func DemoStudents(shift string) []models.Student {
	return []models.Student{
		{ID: "1", FullName: "Ana Beatriz Souza", Grade: "1º Ano", Section: "A", Shift: shift},
		{ID: "2", FullName: "Bruno Henrique Lima", Grade: "3º Ano", Section: "B", Shift: shift},
		{ID: "3", FullName: "Carolina Mendes", Grade: "Grupo V", Section: "A", Shift: shift},
		{ID: "4", FullName: "Davi Oliveira Santos", Grade: "5º Ano", Section: "C", Shift: shift},
		{ID: "5", FullName: "Eduarda Ferreira", Grade: "Maternal(3)", Section: "A", Shift: shift},
		{ID: "6", FullName: "Felipe Araújo", Grade: "9º Ano", Section: "A", Shift: shift},
		{ID: "7", FullName: "Gabriela Rocha", Grade: "1º Ano", Section: "B", Shift: shift},
		{ID: "8", FullName: "Anabela Costa", Grade: "2º Ano", Section: "A", Shift: "Tarde"},
	}
}
