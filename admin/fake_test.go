package admin

import (
	"context"
	"sync"

	"github.com/3run4/stampcard/gateway"
	"github.com/3run4/stampcard/models"
)

type fakeGateway struct {
	mu        sync.Mutex
	members   []models.Member
	prizes    models.PrizeTable
	listErr   error
	upsertErr error
	deleteErr error
	calls     map[string]int
	upserts   []gateway.UpsertRequest
	saved     []models.PrizeTable
	announce  string
}

func newFakeGateway(members ...models.Member) *fakeGateway {
	return &fakeGateway{members: members, calls: map[string]int{}}
}

func (f *fakeGateway) hit(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) ListMembers(context.Context) ([]models.Member, error) {
	f.hit("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Member(nil), f.members...), nil
}

func (f *fakeGateway) UpsertMember(_ context.Context, in gateway.UpsertRequest) (models.Member, error) {
	f.hit("upsert")
	f.upserts = append(f.upserts, in)
	if f.upsertErr != nil {
		return models.Member{}, f.upsertErr
	}
	for i, m := range f.members {
		if m.Email == in.Email {
			if in.InitialStamps != nil {
				f.members[i].StampCount = *in.InitialStamps
			}
			return f.members[i], nil
		}
	}
	return models.Member{}, gateway.ErrNotFound
}

func (f *fakeGateway) DeleteMember(_ context.Context, email string) error {
	f.hit("delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.members[:0]
	for _, m := range f.members {
		if m.Email != email {
			kept = append(kept, m)
		}
	}
	f.members = kept
	return nil
}

func (f *fakeGateway) FetchPrizes(context.Context) (models.PrizeTable, error) {
	f.hit("fetch_prizes")
	return f.prizes, nil
}

func (f *fakeGateway) SavePrizes(_ context.Context, table models.PrizeTable) (models.PrizeTable, error) {
	f.hit("save_prizes")
	f.saved = append(f.saved, table)
	f.prizes = table
	return table, nil
}

func (f *fakeGateway) SetAnnouncement(_ context.Context, text string) error {
	f.hit("announce")
	f.announce = text
	return nil
}
