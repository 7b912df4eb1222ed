package services

import "context"

// Shutdown stops every watch controller, waits for background tasks within
// the context deadline and closes the NATS connection. It is safe to call
// more than once; every teardown step is individually idempotent.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, ctrl := range m.controllers {
		if err := ctrl.Stop(ctx); err != nil {
			m.logger.WithError(err).Error("Error stopping watch controller")
		}
	}

	if m.cancelRun != nil {
		m.cancelRun()
	}

	// Wait for the consumer goroutine and the watch consume loops.
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		for _, ctrl := range m.controllers {
			<-ctrl.Done()
		}
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Background tasks finished")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for background tasks")
	}

	if m.natsConn != nil {
		closeNatsConn(m.natsConn)
	}
}
