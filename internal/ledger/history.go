package ledger

import "context"

// HistoryIterator walks an account's transactions newest first, fetching
// one page at a time. Reset rewinds it to the newest transaction.
//
//	it := svc.History(accountID, 20)
//	for it.Next(ctx) {
//		t := it.Transaction()
//	}
//	if err := it.Err(); err != nil { ... }
type HistoryIterator struct {
	repo      Repository
	accountID int64
	pageSize  int

	buf    []Transaction
	pos    int
	cursor Cursor
	done   bool
	cur    Transaction
	err    error
}

func newHistoryIterator(repo Repository, accountID int64, pageSize int) *HistoryIterator {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &HistoryIterator{repo: repo, accountID: accountID, pageSize: pageSize}
}

func (it *HistoryIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}

	if it.pos >= len(it.buf) {
		if it.done {
			return false
		}

		page, err := it.repo.ListTransactions(ctx, it.accountID, it.cursor, it.pageSize)
		if err != nil {
			it.err = err
			return false
		}
		it.buf, it.pos = page, 0
		if len(page) < it.pageSize {
			it.done = true
		}
		if len(page) == 0 {
			return false
		}
		last := page[len(page)-1]
		it.cursor = Cursor{BeforeTime: last.CreatedAt, BeforeID: last.ID}
	}

	it.cur = it.buf[it.pos]
	it.pos++
	return true
}

func (it *HistoryIterator) Transaction() Transaction {
	return it.cur
}

func (it *HistoryIterator) Err() error {
	return it.err
}

func (it *HistoryIterator) Reset() {
	it.buf = nil
	it.pos = 0
	it.cursor = Cursor{}
	it.done = false
	it.cur = Transaction{}
	it.err = nil
}
