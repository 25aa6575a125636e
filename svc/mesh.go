package svc

import (
	"time"

	consul "github.com/hashicorp/consul/api"
	"github.com/kostiamol/farmms/log"
)

// Query the Consul for services:
// dig +noall +answer @127.0.0.1 -p 8600 farmms.service.dc1.consul
// curl localhost:8500/v1/health/service/farmms?passing

type (
	// MeshAgentCfg is used to initialize an instance of MeshAgent.
	MeshAgentCfg struct {
		Name  string
		Port  int
		TTL   time.Duration
		Log   log.Logger
		Ctrl  Ctrl
		Check func() (bool, error)
	}

	// MeshAgent registers the service in Consul and keeps its TTL check up to date.
	MeshAgent struct {
		name  string
		port  int
		ttl   time.Duration
		log   log.Logger
		ctrl  Ctrl
		check func() (bool, error)
		agent *consul.Agent
	}
)

// NewMeshAgent creates and initializes a new instance of MeshAgent.
func NewMeshAgent(c *MeshAgentCfg) *MeshAgent {
	check := c.Check
	if check == nil {
		// while the service is alive - everything is ok
		check = func() (bool, error) { return true, nil }
	}
	return &MeshAgent{
		name:  c.Name,
		port:  c.Port,
		ttl:   c.TTL,
		log:   c.Log.With("component", "mesh"),
		ctrl:  c.Ctrl,
		check: check,
	}
}

// Run registers the service and launches the TTL updates.
func (a *MeshAgent) Run() {
	client, err := consul.NewClient(consul.DefaultConfig())
	if err != nil {
		a.log.With("event", log.EventUpdConsulStatus).Errorf("func Run: NewClient() failed: %s", err)
		return
	}
	agentReg := &consul.AgentServiceRegistration{
		ID:   a.name,
		Name: a.name,
		Port: a.port,
		Check: &consul.AgentServiceCheck{
			TTL: a.ttl.String(),
		},
	}
	a.agent = client.Agent()
	if err := a.agent.ServiceRegister(agentReg); err != nil {
		a.log.With("event", log.EventUpdConsulStatus).Errorf("func Run: ServiceRegister() failed: %s", err)
		return
	}
	a.log.With("event", log.EventComponentStarted).Infof("registered as [%s]", a.name)
	go a.updateTTL()
}

func (a *MeshAgent) updateTTL() {
	t := time.NewTicker(a.ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			a.update()
		case <-a.ctrl.StopChan:
			if err := a.agent.ServiceDeregister(a.name); err != nil {
				a.log.Errorf("func updateTTL: ServiceDeregister() failed: %s", err)
			}
			a.log.With("event", log.EventComponentShutdown).Infof("")
			return
		}
	}
}

func (a *MeshAgent) update() {
	health := consul.HealthPassing
	if ok, err := a.check(); !ok {
		a.log.With("event", log.EventUpdConsulStatus).Errorf("func update: check() failed: %s", err)
		// failed check will remove a service instance from DNS and HTTP query
		// to avoid returning errors or invalid data.
		health = consul.HealthCritical
	}

	if err := a.agent.UpdateTTL("service:"+a.name, "", health); err != nil {
		a.log.With("event", log.EventUpdConsulStatus).Errorf("func update: UpdateTTL() failed: %s", err)
	}
}
