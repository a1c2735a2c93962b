package client_test

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"raknet-core/client"
	"raknet-core/config"
	"raknet-core/events"
	"raknet-core/listener"
	"raknet-core/logging"
	"raknet-core/metrics"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Client", func() {
	var (
		srv       *listener.Listener
		srvBus    *events.Bus
		srvEstab  chan events.Event
		srvBatch  chan events.Event
		srvBye    chan events.Event
		srvAddr   string
	)

	BeforeEach(func() {
		cfg := config.Default()
		cfg.Host = "127.0.0.1"
		cfg.Port = 0

		srvBus = events.NewBus()
		srvEstab = make(chan events.Event, 4)
		srvBatch = make(chan events.Event, 4)
		srvBye = make(chan events.Event, 4)
		srvBus.Subscribe(events.ConnectionEstablished, func(e events.Event) { srvEstab <- e })
		srvBus.Subscribe(events.IncomingBatch, func(e events.Event) { srvBatch <- e })
		srvBus.Subscribe(events.Disconnect, func(e events.Event) { srvBye <- e })

		var err error
		srv, err = listener.New(cfg, srvBus, logging.New("error"), metrics.New(prometheus.NewRegistry()))
		Expect(err).ToNot(HaveOccurred())
		go srv.Serve()

		srvAddr = fmt.Sprintf("127.0.0.1:%d", srv.LocalAddr().Port)
	})

	AfterEach(func() {
		Expect(srv.Close()).ToNot(HaveOccurred())
	})

	It("completes the three-step handshake and both sides report establishment", func() {
		cliBus := events.NewBus()
		cliEstab := make(chan events.Event, 4)
		cliBus.Subscribe(events.ConnectionEstablished, func(e events.Event) { cliEstab <- e })

		c, err := client.Dial(srvAddr, cliBus, logging.New("error"))
		Expect(err).ToNot(HaveOccurred())
		defer c.Close()
		go c.Serve()

		Eventually(srvEstab, 2*time.Second).Should(Receive())
		Eventually(cliEstab, 2*time.Second).Should(Receive())
	})

	It("delivers game packets in both directions", func() {
		cliBus := events.NewBus()
		cliBatch := make(chan events.Event, 4)
		cliBus.Subscribe(events.IncomingBatch, func(e events.Event) { cliBatch <- e })

		c, err := client.Dial(srvAddr, cliBus, logging.New("error"))
		Expect(err).ToNot(HaveOccurred())
		defer c.Close()
		go c.Serve()

		var established events.Event
		Eventually(srvEstab, 2*time.Second).Should(Receive(&established))

		Expect(c.Send([]byte("from client"))).ToNot(HaveOccurred())
		var up events.Event
		Eventually(srvBatch, 2*time.Second).Should(Receive(&up))
		Expect(up.Payload).To(Equal([]byte("from client")))

		Expect(srv.Dispatch(events.Command{
			Kind:    events.OutgoingBatch,
			Handle:  established.Handle,
			Payload: []byte("from server"),
		})).ToNot(HaveOccurred())
		var down events.Event
		Eventually(cliBatch, 2*time.Second).Should(Receive(&down))
		Expect(down.Payload).To(Equal([]byte("from server")))
	})

	It("notifies the server on graceful disconnect", func() {
		c, err := client.Dial(srvAddr, events.NewBus(), logging.New("error"))
		Expect(err).ToNot(HaveOccurred())
		go c.Serve()

		Eventually(srvEstab, 2*time.Second).Should(Receive())

		Expect(c.Disconnect()).ToNot(HaveOccurred())
		var bye events.Event
		Eventually(srvBye, 2*time.Second).Should(Receive(&bye))
		Expect(bye.DisconnectCause).To(Equal(events.ClientDisconnect))
	})

	It("answers an unconnected ping with the advertised status", func() {
		data, err := client.Ping(srvAddr, time.Second)
		Expect(err).ToNot(HaveOccurred())
		Expect(data).To(HavePrefix("MCPE;"))
		Expect(data).To(ContainSubstring(fmt.Sprintf(";%d;", srv.GUID())))
	})
})
