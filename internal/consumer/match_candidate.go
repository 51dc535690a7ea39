package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-playground/validator/v10"
	"github.com/nsxzhou1114/sighting-api/internal/config"
	"github.com/nsxzhou1114/sighting-api/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Alerter 发送匹配提醒
type Alerter interface {
	SendMatchAlert(ctx context.Context, callerID, sourceID, matchID string) error
}

// MatchCandidate 识别服务发布的候选记录对
type MatchCandidate struct {
	SourceID string  `json:"source_id" validate:"required"`
	MatchID  string  `json:"match_id" validate:"required,nefield=SourceID"`
	Score    float64 `json:"score" validate:"gte=0,lte=1"`
}

// action 消息处理结果
type action int

const (
	actionAck     action = iota // 处理完成或业务上无法处理
	actionRequeue               // 临时故障，重新入队
	actionDrop                  // 格式错误，丢弃
)

const handleTimeout = 10 * time.Second

// MatchCandidateConsumer 消费候选记录对并转换为匹配提醒
type MatchCandidateConsumer struct {
	cfg      config.BrokerConfig
	alerts   Alerter
	logger   *zap.SugaredLogger
	validate *validator.Validate
}

// NewMatchCandidateConsumer 创建消费者
func NewMatchCandidateConsumer(cfg config.BrokerConfig, alerts Alerter, logger *zap.SugaredLogger) *MatchCandidateConsumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = cfg.Workers
	}
	if cfg.DialAttempts == 0 {
		cfg.DialAttempts = 1
	}
	return &MatchCandidateConsumer{
		cfg:      cfg,
		alerts:   alerts,
		logger:   logger,
		validate: validator.New(),
	}
}

// process 处理单条消息
func (c *MatchCandidateConsumer) process(ctx context.Context, body []byte) action {
	var candidate MatchCandidate
	if err := json.Unmarshal(body, &candidate); err != nil {
		c.logger.Warnf("候选消息格式错误: %v", err)
		return actionDrop
	}
	if err := c.validate.Struct(&candidate); err != nil {
		c.logger.Warnf("候选消息校验失败: %v", err)
		return actionDrop
	}

	// 系统发起的提醒没有调用方
	err := c.alerts.SendMatchAlert(ctx, "", candidate.SourceID, candidate.MatchID)
	if err != nil {
		if service.KindOf(err) == service.KindInternal {
			c.logger.Errorf("发送匹配提醒失败，重新入队: %s -> %s: %v", candidate.SourceID, candidate.MatchID, err)
			return actionRequeue
		}
		c.logger.Infof("忽略候选记录对 %s -> %s: %v", candidate.SourceID, candidate.MatchID, err)
		return actionAck
	}

	c.logger.Infow("候选记录对已转换为匹配提醒",
		"source_id", candidate.SourceID,
		"match_id", candidate.MatchID,
		"score", candidate.Score)
	return actionAck
}

// handle 处理投递并确认
func (c *MatchCandidateConsumer) handle(ctx context.Context, d amqp.Delivery) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	var err error
	switch c.process(ctx, d.Body) {
	case actionAck:
		err = d.Ack(false)
	case actionRequeue:
		// 已经重投过的消息不再入队，避免毒消息循环
		err = d.Nack(false, !d.Redelivered)
	case actionDrop:
		err = d.Nack(false, false)
	}
	if err != nil {
		c.logger.Warnf("确认消息失败: %v", err)
	}
}

// dial 带重试地连接消息队列
func (c *MatchCandidateConsumer) dial(ctx context.Context) (*amqp.Connection, error) {
	var conn *amqp.Connection
	err := retry.Do(
		func() error {
			var err error
			conn, err = amqp.Dial(c.cfg.URL)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.DialAttempts),
		retry.Delay(time.Second),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warnf("连接消息队列失败，第 %d 次重试: %v", n+1, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接消息队列失败: %w", err)
	}
	return conn, nil
}

// setup 声明交换机与队列并开始消费
func (c *MatchCandidateConsumer) setup(conn *amqp.Connection) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	if err := ch.QueueBind(q.Name, c.cfg.RoutingKey, c.cfg.Exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	return ch, msgs, nil
}

// Run 消费直到 ctx 取消或连接断开
func (c *MatchCandidateConsumer) Run(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, msgs, err := c.setup(conn)
	if err != nil {
		return fmt.Errorf("初始化消费队列失败: %w", err)
	}
	defer ch.Close()

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	c.logger.Infof("开始消费候选记录对: 队列 %s，工作协程 %d", c.cfg.Queue, c.cfg.Workers)

	var wg sync.WaitGroup
	deliveries := make(chan amqp.Delivery)
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range deliveries {
				c.handle(ctx, d)
			}
		}()
	}
	defer func() {
		close(deliveries)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("消息队列连接已关闭")
			}
			return fmt.Errorf("消息队列连接断开: %w", amqpErr)
		case d, ok := <-msgs:
			if !ok {
				return errors.New("消息通道已关闭")
			}
			select {
			case deliveries <- d:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return nil
			}
		}
	}
}

// RunForever 断线后按退避重连，直到 ctx 取消
func (c *MatchCandidateConsumer) RunForever(ctx context.Context) {
	backoff := time.Second
	for {
		err := c.Run(ctx)
		if ctx.Err() != nil {
			c.logger.Info("候选记录对消费者已停止")
			return
		}
		c.logger.Errorf("候选记录对消费者异常退出，%s 后重连: %v", backoff, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
