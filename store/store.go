// Package store holds the authoritative client-side snapshot of one
// customer's orders, payments, and credit balance. All mutation goes
// through action methods; actions are serialized by a mutex, so two
// concurrent actions never partially overwrite each other.
package store

import (
	"sync"

	"portal-svc/models"
)

// Snapshot is an immutable copy of the application state. Slices are
// copied on read, so holders of a Snapshot never observe later actions.
type Snapshot struct {
	CustomerID    string                `json:"customerId"`
	Orders        []models.Order        `json:"orders"`
	Payments      []models.Payment      `json:"payments"`
	CreditBalance *models.CreditBalance `json:"creditBalance"`
	Loading       bool                  `json:"loading"`
	Error         string                `json:"error,omitempty"`
}

type Store struct {
	mu    sync.Mutex
	state Snapshot
}

func New(customerID string) *Store {
	return &Store{
		state: Snapshot{
			CustomerID: customerID,
			Orders:     []models.Order{},
			Payments:   []models.Payment{},
		},
	}
}

func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = loading
}

// SetError records a user-facing error message; the empty string clears
// it. Setting an error also forces loading to false.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = msg
	s.state.Loading = false
}

func (s *Store) SetOrders(orders []models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Orders = append([]models.Order(nil), orders...)
}

func (s *Store) SetPayments(payments []models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Payments = append([]models.Payment(nil), payments...)
}

// SetCreditBalance replaces the balance wholesale; nil marks it absent.
func (s *Store) SetCreditBalance(balance *models.CreditBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if balance == nil {
		s.state.CreditBalance = nil
		return
	}
	b := *balance
	s.state.CreditBalance = &b
}

func (s *Store) AddOrder(order models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Orders = append(s.state.Orders, order)
}

// UpdateOrder replaces the order with a matching id. Unknown ids are a
// no-op.
func (s *Store) UpdateOrder(order models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Orders {
		if s.state.Orders[i].ID == order.ID {
			s.state.Orders[i] = order
			return
		}
	}
}

func (s *Store) AddPayment(payment models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Payments = append(s.state.Payments, payment)
}

// UpdatePayment replaces the payment with a matching id. Unknown ids are
// a no-op.
func (s *Store) UpdatePayment(payment models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Payments {
		if s.state.Payments[i].PaymentID == payment.PaymentID {
			s.state.Payments[i] = payment
			return
		}
	}
}

// SetCustomerID switches the active customer. Callers are responsible
// for triggering a resynchronization afterward; the store never cascades.
func (s *Store) SetCustomerID(customerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CustomerID = customerID
}

func (s *Store) CustomerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CustomerID
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.state
	snap.Orders = append([]models.Order(nil), s.state.Orders...)
	snap.Payments = append([]models.Payment(nil), s.state.Payments...)
	if s.state.CreditBalance != nil {
		b := *s.state.CreditBalance
		snap.CreditBalance = &b
	}
	return snap
}
