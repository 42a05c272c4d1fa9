package vrf

import (
	"context"
	"sync"
	"time"

	"lottery/internal/blockchain"
	"lottery/internal/logger"
	"lottery/internal/metrics"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Node answers the requests the mock coordinator records on the ledger. It
// waits delay after seeing a request, standing in for block confirmations.
type Node struct {
	ledger      *blockchain.Ledger
	coordinator *CoordinatorMock
	delay       time.Duration
	metrics     *metrics.Metrics

	mu        sync.Mutex
	consumers map[common.Address]Consumer
	cursor    uint64
}

func NewNode(ledger *blockchain.Ledger, coordinator *CoordinatorMock, delay time.Duration, m *metrics.Metrics) *Node {
	return &Node{
		ledger:      ledger,
		coordinator: coordinator,
		delay:       delay,
		metrics:     m,
		consumers:   make(map[common.Address]Consumer),
	}
}

// Register makes requests sent by consumer answerable.
func (n *Node) Register(consumer Consumer) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.consumers[consumer.Address()] = consumer
}

func (n *Node) consumer(address common.Address) (Consumer, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	consumer, ok := n.consumers[address]
	return consumer, ok
}

// Process answers every request logged since the previous call and returns
// how many were fulfilled. A rolled back fulfillment leaves the request
// pending on the coordinator; the node does not retry it.
func (n *Node) Process(ctx context.Context) (int, error) {
	n.mu.Lock()
	logs := n.ledger.Logs(n.cursor)
	n.mu.Unlock()

	fulfilled := 0
	for _, log := range logs {
		if log.Contract != n.coordinator.Address() || log.Name != RandomWordsRequestedEvent {
			n.advance(log.Index)
			continue
		}

		requested := log.Event.(RandomWordsRequested)
		if err := n.wait(ctx); err != nil {
			return fulfilled, err
		}

		if n.fulfill(requested) {
			fulfilled++
		}
		n.advance(log.Index)
	}

	return fulfilled, nil
}

func (n *Node) advance(index uint64) {
	n.mu.Lock()
	n.cursor = index + 1
	n.mu.Unlock()
}

func (n *Node) wait(ctx context.Context) error {
	if n.delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(n.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (n *Node) fulfill(requested RandomWordsRequested) bool {
	requestID := requested.RequestID.Hex()

	if !n.coordinator.Pending(requested.RequestID) {
		logger.Debug("vrf node: request already answered, skip", zap.String("request id", requestID))
		return false
	}

	consumer, ok := n.consumer(requested.Sender)
	if !ok {
		logger.Warn("vrf node: unknown consumer, skip", zap.String("request id", requestID), zap.String("consumer", requested.Sender.Hex()))
		return false
	}

	logger.Debug("vrf node: fulfilling...", zap.String("request id", requestID), zap.Uint32("words", requested.NumWords))
	receipt, err := n.coordinator.FulfillRandomWords(requested.RequestID, consumer)
	if err != nil {
		n.metrics.FulfillmentFailures.Inc()
		logger.Error("vrf node: fulfilling... rolled back, request left pending",
			zap.String("request id", requestID),
			zap.String("consumer", requested.Sender.Hex()),
			zap.Error(err),
		)
		return false
	}

	n.metrics.Fulfillments.Inc()
	logger.Info("vrf node: fulfilling... done", zap.String("request id", requestID), zap.String("tx", receipt.TxHash.Hex()))
	return true
}

// Run processes new logs as the ledger announces them until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	notify, cancel := n.ledger.Subscribe()
	defer cancel()

	logger.Info("vrf node: started", zap.String("coordinator", n.coordinator.Address().Hex()), zap.Duration("delay", n.delay))
	for {
		if _, err := n.Process(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}

		select {
		case <-ctx.Done():
			logger.Info("vrf node: stopped")
			return nil
		case <-notify:
		}
	}

	logger.Info("vrf node: stopped")
	return nil
}
