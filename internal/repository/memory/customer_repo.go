package memory

import (
	"bank_ledger/internal/domain"
	"bank_ledger/internal/repository"
	"fmt"
)

type customerRepo struct {
	customers map[string]*domain.Customer
	order     []string
}

func newCustomerRepo() *customerRepo {
	return &customerRepo{
		customers: make(map[string]*domain.Customer),
	}
}

func (r *customerRepo) insert(customer *domain.Customer) error {
	if _, exists := r.customers[customer.ID]; exists {
		return fmt.Errorf("%w: customer %s", repository.ErrDuplicate, customer.ID)
	}

	r.customers[customer.ID] = customer.Clone()
	r.order = append(r.order, customer.ID)
	return nil
}

func (r *customerRepo) removeLast() {
	if len(r.order) == 0 {
		return
	}
	id := r.order[len(r.order)-1]
	r.order = r.order[:len(r.order)-1]
	delete(r.customers, id)
}

func (r *customerRepo) get(id string) (*domain.Customer, bool) {
	customer, exists := r.customers[id]
	if !exists {
		return nil, false
	}
	return customer.Clone(), true
}

func (r *customerRepo) list() []*domain.Customer {
	result := make([]*domain.Customer, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.customers[id].Clone())
	}
	return result
}

func (r *customerRepo) len() int {
	return len(r.order)
}
