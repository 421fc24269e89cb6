package portal

import (
	"net"
	"net/http"
	"sync"

	"github.com/go-errors/errors"
	"github.com/gobuffalo/packr/v2"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Receiver handles raw inbound messages from connected browsers.
type Receiver interface {
	ReceiveMessage(data []byte)
}

// Config configures the provisioning portal.
type Config struct {
	// Listen is the address the portal serves on (ex. :80)
	Listen string
	Logger Logger
}

type client struct {
	conn     *websocket.Conn
	writeMtx sync.Mutex
}

// Portal serves the setup page and a websocket endpoint to browsers on
// the hotspot network. One portal serves one provisioning session.
type Portal struct {
	log      Logger
	listen   string
	router   *mux.Router
	receiver Receiver

	mtx      sync.Mutex
	listener net.Listener
	clients  []*client
}

func New(config *Config) *Portal {
	portal := &Portal{
		listen: config.Listen,
	}

	if config.Logger != nil {
		portal.log = config.Logger
	} else {
		portal.log = noopLogger{}
	}

	box := packr.New("setup", "./web")

	portal.router = mux.NewRouter()
	portal.router.Handle("/ws", portal.handleWebsocket()).Methods(http.MethodGet)
	portal.router.PathPrefix("/").Handler(http.FileServer(box))

	return portal
}

// SetReceiver registers the handler for inbound messages. It has to be
// set before the portal starts.
func (p *Portal) SetReceiver(receiver Receiver) {
	p.receiver = receiver
}

// Start begins serving. It returns once the listener is up.
func (p *Portal) Start() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.listener != nil {
		return errors.Errorf("portal is already running")
	}

	lis, err := net.Listen("tcp", p.listen)
	if err != nil {
		return errors.Errorf("could not listen on %v: %v", p.listen, err)
	}

	p.listener = lis

	go func() {
		err := http.Serve(lis, p.router)
		if err != nil {
			p.log.Debugf("portal server finished: %v", err)
		}
	}()

	p.log.Infof("serving setup portal on %v", p.listen)

	return nil
}

// Stop closes the listener and drops all connected browsers.
func (p *Portal) Stop() error {
	p.mtx.Lock()
	lis := p.listener
	clients := p.clients
	p.listener = nil
	p.clients = nil
	p.mtx.Unlock()

	if lis == nil {
		return nil
	}

	for _, c := range clients {
		_ = c.conn.Close()
	}

	err := lis.Close()
	if err != nil {
		return errors.Errorf("could not close listener: %v", err)
	}

	return nil
}

// Send delivers one JSON object to every connected browser.
func (p *Portal) Send(v interface{}) error {
	p.mtx.Lock()
	clients := make([]*client, len(p.clients))
	copy(clients, p.clients)
	p.mtx.Unlock()

	for _, c := range clients {
		c.writeMtx.Lock()
		err := c.conn.WriteJSON(v)
		c.writeMtx.Unlock()

		if err != nil {
			p.log.Warnf("could not send to client: %v", err)
			p.removeClient(c)
		}
	}

	return nil
}

func (p *Portal) handleWebsocket() http.HandlerFunc {
	upgrader := &websocket.Upgrader{
		// the portal is only reachable on the hotspot-local network
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			p.log.Errorf("could not upgrade: %v", err)
			return
		}

		c := &client{conn: conn}

		p.mtx.Lock()
		p.clients = append(p.clients, c)
		p.mtx.Unlock()

		p.log.Infof("browser connected from %v", r.RemoteAddr)

		go p.readMessages(c)
	}
}

func (p *Portal) readMessages(c *client) {
	defer p.removeClient(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			p.log.Debugf("client read finished: %v", err)
			return
		}

		if p.receiver != nil {
			p.receiver.ReceiveMessage(data)
		}
	}
}

func (p *Portal) removeClient(c *client) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	for i, existing := range p.clients {
		if existing == c {
			p.clients = append(p.clients[:i], p.clients[i+1:]...)
			break
		}
	}

	_ = c.conn.Close()
}
