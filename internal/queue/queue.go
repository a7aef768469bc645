// Package queue реализует двойную очередь консультаций провайдера: приоритетную и обычную.
package queue

import (
	"slices"

	"github.com/Freeeeeet/consultation_scheduler/internal/model"
)

type entry struct {
	appt *model.Appointment
	seq  uint64
}

// before порядок внутри подочереди: раньше по времени, при равенстве - раньше добавлен
func before(a, b entry) int {
	if c := a.appt.ScheduledAt.Compare(b.appt.ScheduledAt); c != 0 {
		return c
	}
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	}
	return 0
}

// DualQueue очередь ожидающих записей одного провайдера.
// Приоритетная подочередь всегда обслуживается первой.
type DualQueue struct {
	providerID string
	priority   []entry
	regular    []entry
	seq        uint64
}

func New(providerID string) *DualQueue {
	return &DualQueue{providerID: providerID}
}

func (q *DualQueue) ProviderID() string {
	return q.providerID
}

// Enqueue кладёт запись в подочередь по её флагу приоритета.
// Возвращает false, если запись уже стоит в очереди
func (q *DualQueue) Enqueue(a *model.Appointment) bool {
	if q.Contains(a) {
		return false
	}
	q.seq++
	q.insert(entry{appt: a, seq: q.seq}, a.Priority)
	return true
}

func (q *DualQueue) insert(e entry, priority bool) {
	target := &q.regular
	if priority {
		target = &q.priority
	}
	i, _ := slices.BinarySearchFunc(*target, e, before)
	*target = slices.Insert(*target, i, e)
}

func indexOf(list []entry, a *model.Appointment) int {
	return slices.IndexFunc(list, func(e entry) bool { return e.appt.ID == a.ID })
}

// Remove убирает запись из той подочереди, где она находится
func (q *DualQueue) Remove(a *model.Appointment) bool {
	if i := indexOf(q.priority, a); i >= 0 {
		q.priority = slices.Delete(q.priority, i, i+1)
		return true
	}
	if i := indexOf(q.regular, a); i >= 0 {
		q.regular = slices.Delete(q.regular, i, i+1)
		return true
	}
	return false
}

func (q *DualQueue) Contains(a *model.Appointment) bool {
	return indexOf(q.priority, a) >= 0 || indexOf(q.regular, a) >= 0
}

func (q *DualQueue) InPriority(a *model.Appointment) bool {
	return indexOf(q.priority, a) >= 0
}

// Move переносит запись в подочередь, соответствующую её текущему флагу, сохраняя порядковый номер
func (q *DualQueue) Move(a *model.Appointment) bool {
	from, to := &q.regular, &q.priority
	if !a.Priority {
		from, to = &q.priority, &q.regular
	}
	i := indexOf(*from, a)
	if i < 0 {
		return indexOf(*to, a) >= 0
	}
	e := (*from)[i]
	*from = slices.Delete(*from, i, i+1)
	q.insert(e, a.Priority)
	return true
}

// Resort восстанавливает порядок после изменения времени записей
func (q *DualQueue) Resort() {
	slices.SortStableFunc(q.priority, before)
	slices.SortStableFunc(q.regular, before)
}

func (q *DualQueue) PeekNext() *model.Appointment {
	if len(q.priority) > 0 {
		return q.priority[0].appt
	}
	if len(q.regular) > 0 {
		return q.regular[0].appt
	}
	return nil
}

// Dequeue снимает голову приоритетной подочереди, а если она пуста - голову обычной
func (q *DualQueue) Dequeue() *model.Appointment {
	if len(q.priority) > 0 {
		head := q.priority[0].appt
		q.priority = slices.Delete(q.priority, 0, 1)
		return head
	}
	if len(q.regular) > 0 {
		head := q.regular[0].appt
		q.regular = slices.Delete(q.regular, 0, 1)
		return head
	}
	return nil
}

func (q *DualQueue) Size() int {
	return len(q.priority) + len(q.regular)
}

// EstimatedWait сумма длительностей всех ожидающих записей в минутах.
// Текущую консультацию (InProgress) не учитывает.
func (q *DualQueue) EstimatedWait() int {
	total := 0
	for _, e := range q.priority {
		total += e.appt.DurationMinutes
	}
	for _, e := range q.regular {
		total += e.appt.DurationMinutes
	}
	return total
}

func appts(list []entry) []*model.Appointment {
	out := make([]*model.Appointment, 0, len(list))
	for _, e := range list {
		out = append(out, e.appt)
	}
	return out
}

func (q *DualQueue) Priority() []*model.Appointment {
	return appts(q.priority)
}

func (q *DualQueue) Regular() []*model.Appointment {
	return appts(q.regular)
}

// Ordered порядок обслуживания: сначала приоритетные, затем обычные
func (q *DualQueue) Ordered() []*model.Appointment {
	return append(q.Priority(), q.Regular()...)
}
