package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/najoast/hellonode/admin"
	"github.com/najoast/hellonode/bootstrap"
	"github.com/najoast/hellonode/config"
	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/display"
	"github.com/najoast/hellonode/identity"
	"github.com/najoast/hellonode/securechannel"
	"github.com/najoast/hellonode/tcp"
	"github.com/najoast/hellonode/workers"
)

// StopTimeout bounds the shutdown of a served node.
const StopTimeout = 10 * time.Second

// Server runs one long-lived node in the role its configuration names.
type Server struct {
	cfg     *config.Config
	printer *display.Printer
	loggers ldlog.Loggers

	node      *core.Node
	transport *tcp.Transport
	ids       *identity.Identities
	self      *identity.Identity
	members   *identity.MembersWatcher
	admin     *admin.Server
	lifecycle *bootstrap.LifecycleManager

	tcpOpts  tcp.ListenerOptions
	scOpts   securechannel.ListenerOptions
	listener *tcp.Listener
}

// NewServer creates the node, its identity and its services. Nothing
// listens until Start.
func NewServer(cfg *config.Config, printer *display.Printer, loggers ldlog.Loggers) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	node, err := core.NewNode(core.WithName(cfg.App.Name), core.WithLoggers(loggers))
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:       cfg,
		printer:   printer,
		loggers:   loggers,
		node:      node,
		ids:       identity.NewIdentities(),
		lifecycle: bootstrap.NewLifecycleManager(loggers),
		tcpOpts:   tcp.NewListenerOptions(),
	}
	if err := s.init(); err != nil {
		_ = node.Stop(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Server) init() error {
	var err error
	if s.transport, err = tcp.NewTransport(s.node); err != nil {
		return err
	}

	if s.cfg.Identity.Secret != "" {
		s.self, err = s.ids.IdentityFromSecret(s.cfg.Identity.Secret)
	} else {
		s.self, err = s.ids.CreateIdentity()
	}
	if err != nil {
		return fmt.Errorf("failed to create node identity: %w", err)
	}
	s.scOpts = securechannel.NewListenerOptions().AsConsumer(s.tcpOpts.SpawnerFlowControlID())

	if err := s.lifecycle.Register(bootstrap.Hooks{ServiceName: "node", OnStop: s.node.Stop}); err != nil {
		return err
	}
	workerDeps := []string{"node"}

	if s.cfg.App.Role == config.RoleIssuer {
		s.members, err = identity.NewMembersWatcher(s.cfg.Issuer.MembersFile, s.ids.Repository(), s.loggers)
		if err != nil {
			return err
		}
		if err := s.lifecycle.Register(s.members, "node"); err != nil {
			return err
		}
		workerDeps = append(workerDeps, s.members.Name())
	}

	if err := s.lifecycle.Register(bootstrap.Hooks{ServiceName: "workers", OnStart: s.startWorkers}, workerDeps...); err != nil {
		return err
	}
	listener := bootstrap.Hooks{ServiceName: "listener", OnStart: s.listen, OnStop: s.closeListener}
	if err := s.lifecycle.Register(listener, "workers"); err != nil {
		return err
	}

	if s.cfg.Admin.Enabled {
		handler := admin.NewHandler(s.node,
			admin.WithTransport(s.transport),
			admin.WithLifecycle(s.lifecycle),
			admin.WithIdentifier(s.self.Identifier().String()),
			admin.WithLoggers(s.loggers))
		s.admin = admin.NewServer(s.cfg.Admin.Listen, handler, s.loggers)
		if err := s.lifecycle.Register(s.admin, "listener"); err != nil {
			return err
		}
	}
	return nil
}

// Node returns the served node.
func (s *Server) Node() *core.Node { return s.node }

// Identity returns the identity the node runs as.
func (s *Server) Identity() *identity.Identity { return s.self }

// ListenAddr returns the bound TCP address once started.
func (s *Server) ListenAddr() string {
	if s.listener == nil {
		return s.cfg.Transport.Listen
	}
	return s.listener.Addr()
}

// AdminAddr returns the bound admin address, or "" when admin is disabled.
func (s *Server) AdminAddr() string {
	if s.admin == nil {
		return ""
	}
	return s.admin.Addr()
}

// Start starts every service in dependency order.
func (s *Server) Start(ctx context.Context) error {
	s.printer.Title(fmt.Sprintf("Run node '%s' as %s", s.cfg.App.Name, s.cfg.App.Role), display.TitleLight)
	if err := s.lifecycle.Start(ctx); err != nil {
		return err
	}
	s.loggers.Infof("Node %s running as %s with identity %s", s.cfg.App.Name, s.cfg.App.Role, s.self.Identifier())
	return nil
}

// Stop stops every service in reverse order.
func (s *Server) Stop(ctx context.Context) error {
	return s.lifecycle.Stop(ctx)
}

// Serve runs the configured role until ctx is done.
func Serve(ctx context.Context, cfg *config.Config, printer *display.Printer, loggers ldlog.Loggers) error {
	s, err := NewServer(cfg, printer, loggers)
	if err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), StopTimeout)
	defer cancel()
	return s.Stop(stopCtx)
}

func (s *Server) startWorkers(ctx context.Context) error {
	switch s.cfg.App.Role {
	case config.RoleResponder:
		return s.startResponderWorkers()
	case config.RoleMiddle:
		return s.startMiddleWorkers(ctx)
	case config.RoleIssuer:
		return s.startIssuerWorkers()
	default:
		return config.ErrInvalidRole
	}
}

// startResponderWorkers runs the echoer and a secure channel listener.
// With a configured authority the echoer only admits channel peers whose
// credential puts them in the production cluster.
func (s *Server) startResponderWorkers() error {
	flow := s.node.FlowControls()
	var opts []core.WorkerOption

	if s.cfg.Identity.Authority != "" {
		authority, err := s.ids.ImportIdentityHex(s.cfg.Identity.Authority)
		if err != nil {
			return fmt.Errorf("invalid authority: %w", err)
		}
		trust := identity.NewTrustContext(s.cfg.Issuer.TrustContextID, identity.NewAuthorityService(s.ids, authority))
		s.scOpts = s.scOpts.WithTrustContext(trust)
		opts = append(opts, core.WithIncomingAccessControl(
			identity.NewAbacAccessControl(s.ids.Repository(), clusterAttribute, clusterValue)))
	} else {
		flow.AddConsumer(echoerAddress, s.tcpOpts.SpawnerFlowControlID())
	}

	flow.AddConsumer(echoerAddress, s.scOpts.SpawnerFlowControlID())
	if err := s.node.StartWorker(echoerAddress, &workers.Echoer{Printer: s.printer}, opts...); err != nil {
		return err
	}
	_, err := securechannel.CreateListener(s.node, s.ids, s.self.Identifier(), secureServerAddress, s.scOpts)
	return err
}

// startMiddleWorkers connects to the configured peer and forwards to it.
func (s *Server) startMiddleWorkers(ctx context.Context) error {
	retry := s.cfg.Transport.Retry
	opts := tcp.NewConnectionOptions()
	opts.Timeout = s.cfg.Transport.ConnectTimeout
	opts.Backoff = &tcp.Backoff{
		InitialDelay: retry.InitialDelay,
		MaxDelay:     retry.MaxDelay,
		Multiplier:   2.0,
		MaxAttempts:  retry.MaxAttempts,
		Jitter:       true,
	}

	conn, err := s.transport.Connect(ctx, s.cfg.Transport.Connect, opts)
	if err != nil {
		return err
	}
	s.node.FlowControls().AddConsumer(forwarderAddress, s.tcpOpts.SpawnerFlowControlID())
	return s.node.StartWorker(forwarderAddress, &workers.Forwarder{Address: conn.SenderAddress(), Printer: s.printer})
}

// startIssuerWorkers runs the credentials issuer behind a secure channel
// listener. Only identities listed in the members file may ask.
func (s *Server) startIssuerWorkers() error {
	issuer, err := identity.NewCredentialsIssuer(s.ids, s.self.Identifier(), s.cfg.Issuer.TrustContextID)
	if err != nil {
		return err
	}
	issuer.WithTTL(s.cfg.Issuer.CredentialTTL)

	if _, err := securechannel.CreateListener(s.node, s.ids, s.self.Identifier(), secureIssuerAddress, s.scOpts); err != nil {
		return err
	}
	s.printer.Println(display.OnBrightPurple, fmt.Sprintf("🔒 issuer identifier %s", s.self.Identifier()))
	s.loggers.Infof("Issuer change history: %s", s.self.Export())

	s.node.FlowControls().AddConsumer(issuerAddress, s.scOpts.SpawnerFlowControlID())
	return s.node.StartWorker(issuerAddress, issuer, core.WithIncomingAccessControl(core.AccessControlFunc(s.isMember)))
}

// isMember admits messages from identities currently in the members file.
func (s *Server) isMember(_ context.Context, msg *core.LocalMessage) (bool, error) {
	id, err := identity.IdentifierFromMessage(msg)
	if err != nil {
		return false, nil
	}
	for _, member := range s.members.Members().Identifiers() {
		if member == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *Server) listen(ctx context.Context) error {
	l, err := s.transport.Listen(ctx, s.cfg.Transport.Listen, s.tcpOpts)
	if err != nil {
		return err
	}
	s.listener = l
	s.printer.Println(display.OnBrightBlue, fmt.Sprintf("🖥️ %s listening on %s", s.cfg.App.Role, l.Addr()))
	return nil
}

func (s *Server) closeListener(context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
